package domain

// Transcript mantiene los mensajes mostrados al usuario en orden de llegada.
// El mensaje del asistente en curso se reemplaza por identidad, no por posicion.
type Transcript struct {
	messages []Message
}

// Apply agrega el mensaje al final, salvo que el ultimo mostrado tenga el
// mismo ID; en ese caso lo reemplaza en el lugar.
func (t *Transcript) Apply(msg Message) {
	if n := len(t.messages); n > 0 && t.messages[n-1].ID == msg.ID {
		t.messages[n-1] = msg
		return
	}
	t.messages = append(t.messages, msg)
}

// Messages devuelve una copia del transcript.
func (t *Transcript) Messages() []Message {
	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Last devuelve el ultimo mensaje mostrado, si existe.
func (t *Transcript) Last() (Message, bool) {
	if len(t.messages) == 0 {
		return Message{}, false
	}
	return t.messages[len(t.messages)-1], true
}
