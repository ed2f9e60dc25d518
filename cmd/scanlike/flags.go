package main

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// bind ties a flag to a viper key so config files and SCANLIKE_* variables can set it.
func bind(f *pflag.Flag, key string) {
	if err := viper.BindPFlag(key, f); err != nil {
		panic(err)
	}
}
