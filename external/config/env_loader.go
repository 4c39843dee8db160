package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	internalconfig "github.com/foxseedlab/roomcall/internal/config"
)

type envConfig struct {
	Env                string `env:"ENV" envDefault:"production"`
	BaseIP             string `env:"BASE_IP" envDefault:"224.1.42."`
	RTPMulticastPort   int    `env:"RTP_MULTICAST_PORT" envDefault:"5000"`
	MulticastInterface string `env:"MULTICAST_INTERFACE"`
	RTPEncodingName    string `env:"RTP_ENCODING_NAME" envDefault:"OPUS"`
	RTPClockRate       int    `env:"RTP_CLOCK_RATE" envDefault:"48000"`
	RTPEncodingParams  int    `env:"RTP_ENCODING_PARAMS" envDefault:"1"`
	RTPPayloadType     int    `env:"RTP_PAYLOAD_TYPE" envDefault:"111"`
	MixerMaxInputs     int    `env:"MIXER_MAX_INPUTS" envDefault:"16"`
	OutputPath         string `env:"OUTPUT_PATH" envDefault:"-"`
	ControlAddr        string `env:"CONTROL_ADDR" envDefault:"127.0.0.1:7070"`
	AutoJoinRooms      []int  `env:"AUTO_JOIN_ROOMS" envSeparator:","`
	SelfSSRC           uint32 `env:"SELF_SSRC" envDefault:"0"`
	DatabaseURL        string `env:"DATABASE_URL"`
	EventWebhookURL    string `env:"EVENT_WEBHOOK_URL"`
}

func Load() (*internalconfig.Config, error) {
	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("environment variables are invalid or missing: %w", err)
	}

	cfg := &internalconfig.Config{
		Env:                raw.Env,
		BaseIP:             raw.BaseIP,
		RTPMulticastPort:   raw.RTPMulticastPort,
		MulticastInterface: raw.MulticastInterface,
		RTPEncodingName:    raw.RTPEncodingName,
		RTPClockRate:       raw.RTPClockRate,
		RTPEncodingParams:  raw.RTPEncodingParams,
		RTPPayloadType:     raw.RTPPayloadType,
		MixerMaxInputs:     raw.MixerMaxInputs,
		OutputPath:         raw.OutputPath,
		ControlAddr:        raw.ControlAddr,
		AutoJoinRooms:      raw.AutoJoinRooms,
		SelfSSRC:           raw.SelfSSRC,
		DatabaseURL:        raw.DatabaseURL,
		EventWebhookURL:    raw.EventWebhookURL,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
