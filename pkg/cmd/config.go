package cmd

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/smy-101/skillpack/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	configKeys = config.KeyNames()
	// viper 不是并发安全的
	configMu sync.Mutex
)

func init() {
	configCmd.AddCommand(configListCmd, configGetCmd, configSetCmd, configUnsetCmd)
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "显示或修改配置",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return executeConfigList()
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "列出所有配置项",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return executeConfigList()
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "读取一个配置项",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return executeConfigGet(args[0])
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "设置一个配置项",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := executeConfigSet(args[0], args[1]); err != nil {
			return err
		}
		printSuccess("%s updated", args[0])
		return nil
	},
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "恢复配置项的默认值",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := executeConfigUnset(args[0]); err != nil {
			return err
		}
		printSuccess("%s reset to default", args[0])
		return nil
	},
}

func lookupKey(key string) (config.Key, error) {
	k, ok := config.LookupKey(key)
	if !ok {
		return config.Key{}, fmt.Errorf("unknown config key %q, valid keys: %s", key, strings.Join(configKeys, ", "))
	}
	return k, nil
}

func displayValue(k config.Key, value string) string {
	if value == "" {
		return "(not set)"
	}
	if k.Secret {
		return maskSecret(value)
	}
	return value
}

func maskSecret(s string) string {
	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + strings.Repeat("*", len(s)-8) + s[len(s)-4:]
}

func executeConfigGet(key string) error {
	k, err := lookupKey(key)
	if err != nil {
		return err
	}

	configMu.Lock()
	value := viper.GetString(key)
	configMu.Unlock()

	fmt.Printf("%s: %s\n", key, displayValue(k, value))
	return nil
}

func executeConfigList() error {
	configMu.Lock()
	defer configMu.Unlock()

	fmt.Println("config file:", viper.ConfigFileUsed())
	for _, k := range config.Keys {
		fmt.Printf("%s: %s\n", k.Name, displayValue(k, viper.GetString(k.Name)))
	}
	return nil
}

func executeConfigSet(key, value string) error {
	if _, err := lookupKey(key); err != nil {
		return err
	}
	if err := config.ValidateValue(key, value); err != nil {
		return err
	}
	typed, err := config.ParseValue(key, value)
	if err != nil {
		return err
	}
	return writeConfig(key, typed)
}

func executeConfigUnset(key string) error {
	k, err := lookupKey(key)
	if err != nil {
		return err
	}
	return writeConfig(key, k.Default)
}

func writeConfig(key string, value any) error {
	configMu.Lock()
	defer configMu.Unlock()

	path := viper.ConfigFileUsed()
	if path == "" {
		return errors.New("no config file in use")
	}
	if err := config.WriteValue(path, key, value); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	viper.Set(key, value)
	return nil
}
