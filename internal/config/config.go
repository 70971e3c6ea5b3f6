package config

import "github.com/caarlos0/env/v10"

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort             string `env:"HTTP_PORT" envDefault:"8080"`
	GeminiAPIKey         string `env:"GEMINI_API_KEY,required"`
	GeminiModel          string `env:"GEMINI_MODEL" envDefault:"gemini-2.5-flash"`
	GeminiThinkingBudget int32  `env:"GEMINI_THINKING_BUDGET" envDefault:"2048"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
