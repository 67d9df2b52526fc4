package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/smy-101/skillpack/internal/config"
	"github.com/smy-101/skillpack/pkg/cmd"
	"github.com/spf13/viper"
)

func main() {
	initViper()
	cmd.Execute()
}

func initViper() {
	if err := config.Apply(viper.GetViper()); err != nil {
		fmt.Printf("Error configuring defaults: %v\n", err)
		os.Exit(1)
	}

	configDir, err := config.DefaultDir()
	if err != nil {
		fmt.Printf("Error getting home directory: %v\n", err)
		os.Exit(1)
	}
	configPath := filepath.Join(configDir, "config.json")

	viper.SetConfigName("config")
	viper.SetConfigType("json")
	viper.AddConfigPath(configDir)

	if err := config.EnsureFile(configPath); err != nil {
		fmt.Printf("Error writing config file: %v\n", err)
		os.Exit(1)
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Printf("Error reading config file: %v\n", err)
			os.Exit(1)
		}
	}
}
