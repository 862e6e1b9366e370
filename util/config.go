package util

import (
	_ "embed"
	"fmt"
	"log"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

const Name = "mammut"
const ConfigFileName = "config.yaml"

//go:embed config_default.yaml
var embeddedConfig []byte

type AppConfig struct {
	Conf struct {
		Host               string
		SshPort            int    `yaml:"sshPort"`
		HttpPort           int    `yaml:"httpPort"`
		SslDomain          string `yaml:"sslDomain"`
		Closed             bool   `yaml:"closed"`
		FetchTimeoutSecs   int    `yaml:"fetchTimeoutSecs"`
		FrankingKey        string `yaml:"frankingKey"`        // base64, 32 bytes decoded
		FrankingKeyVersion int    `yaml:"frankingKeyVersion"` // bumped on rotation
	}
}

func ReadConf() (*AppConfig, error) {

	c := &AppConfig{}

	// Try to resolve config file path (local first, then user dir)
	configPath := ResolveFilePath(ConfigFileName)

	var buf []byte
	var err error

	buf, err = os.ReadFile(configPath)
	if err != nil {
		// If file doesn't exist, use embedded config and create user config file
		log.Printf("Config file not found at %s, using embedded defaults", configPath)
		buf = embeddedConfig

		configDir, dirErr := GetConfigDir()
		if dirErr == nil {
			userConfigPath := configDir + "/" + ConfigFileName
			writeErr := os.WriteFile(userConfigPath, embeddedConfig, 0644)
			if writeErr != nil {
				log.Printf("Warning: could not write default config to %s: %v", userConfigPath, writeErr)
			} else {
				log.Printf("Created default config file at %s", userConfigPath)
			}
		}
	}

	err = yaml.Unmarshal(buf, c)
	if err != nil {
		return nil, fmt.Errorf("in config file: %w", err)
	}

	envHost := os.Getenv("MAMMUT_HOST")
	envSshPort := os.Getenv("MAMMUT_SSHPORT")
	envHttpPort := os.Getenv("MAMMUT_HTTPPORT")
	envSslDomain := os.Getenv("MAMMUT_SSLDOMAIN")
	envClosed := os.Getenv("MAMMUT_CLOSED")
	envFrankingKey := os.Getenv("MAMMUT_FRANKING_KEY")
	envFrankingKeyVersion := os.Getenv("MAMMUT_FRANKING_KEY_VERSION")

	if envHost != "" {
		c.Conf.Host = envHost
	}

	if envSshPort != "" {
		v, err := strconv.Atoi(envSshPort)
		if err != nil {
			fmt.Println(err)
		}
		c.Conf.SshPort = v
	}

	if envHttpPort != "" {
		v, err := strconv.Atoi(envHttpPort)
		if err != nil {
			fmt.Println(err)
		}
		c.Conf.HttpPort = v
	}

	if envSslDomain != "" {
		c.Conf.SslDomain = envSslDomain
	}

	if envClosed == "true" {
		c.Conf.Closed = true
	}

	if envFrankingKey != "" {
		c.Conf.FrankingKey = envFrankingKey
	}

	if envFrankingKeyVersion != "" {
		v, err := strconv.Atoi(envFrankingKeyVersion)
		if err != nil {
			fmt.Println(err)
		}
		c.Conf.FrankingKeyVersion = v
	}

	if c.Conf.FetchTimeoutSecs == 0 {
		c.Conf.FetchTimeoutSecs = 10
	}

	return c, nil
}
