package main

import "github.com/ilyakaznacheev/cleanenv"

type ServiceConfig struct {
	Environment string `env:"ENVIRONMENT" env-default:"development"`
	Port        int    `env:"PORT" env-default:"8080"`
	SentryDSN   string `env:"SENTRY_DSN"`

	// ArtifactsBucketURL is any bucket URL gocloud understands; local
	// directories use the file:// scheme.
	ArtifactsBucketURL string `env:"ARTIFACTS_BUCKET_URL" env-default:"file:///var/lib/tracelens/artifacts?create_dir=1"`

	AnalysisKafkaBrokers []string `env:"ANALYSIS_KAFKA_BROKERS"`
	AnalysisKafkaTopic   string   `env:"ANALYSIS_KAFKA_TOPIC" env-default:"trace-analysis"`
}

func loadConfig() (ServiceConfig, error) {
	var c ServiceConfig
	err := cleanenv.ReadEnv(&c)
	return c, err
}
