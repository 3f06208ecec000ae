package main

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/mpetters/framepipe/internal/channel"
	"github.com/mpetters/framepipe/internal/frame"
)

type fileConfig struct {
	MaxPayloadBytes       int64  `toml:"max_payload_bytes"`
	RespondOnHandlerError bool   `toml:"respond_on_handler_error"`
	DebugListenAddr       string `toml:"debug_listen_addr"`
	LogLevel              string `toml:"log_level"`
}

type runtimeConfig struct {
	Channel         channel.Config
	DebugListenAddr string
	LogLevel        string
}

func defaultRuntimeConfig() runtimeConfig {
	return runtimeConfig{
		Channel: channel.DefaultConfig(),
	}
}

func loadRuntimeConfig(path string) (runtimeConfig, error) {
	cfg := defaultRuntimeConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return runtimeConfig{}, fmt.Errorf("load framepipe config: %w", err)
	}

	if meta.IsDefined("max_payload_bytes") {
		if raw.MaxPayloadBytes < 0 {
			return runtimeConfig{}, fmt.Errorf("parse max_payload_bytes: negative value %d", raw.MaxPayloadBytes)
		}
		cfg.Channel.Limits = frame.Limits{MaxPayloadBytes: uint64(raw.MaxPayloadBytes)}
	}

	if meta.IsDefined("respond_on_handler_error") {
		cfg.Channel.RespondOnHandlerError = raw.RespondOnHandlerError
	}

	if meta.IsDefined("debug_listen_addr") {
		cfg.DebugListenAddr = strings.TrimSpace(raw.DebugListenAddr)
	}

	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}

	return cfg, nil
}
