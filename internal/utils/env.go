// Package utils holds the environment parsing helpers the config
// layer is built on. Every helper falls back to its default on unset
// or unparseable input rather than erroring.
package utils

import (
	"os"
	"strconv"
	"strings"
)

// GetEnvAsBool parses a boolean environment variable. Accepts
// 1/true/yes and 0/false/no, case-insensitive.
func GetEnvAsBool(key string, defaultVal bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	}
	return defaultVal
}

// GetEnvAsInt parses an integer environment variable.
func GetEnvAsInt(name string, defaultVal int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return defaultVal
	}
	return val
}

// GetEnvAsFloat parses a float64 environment variable.
func GetEnvAsFloat(name string, defaultVal float64) float64 {
	raw := os.Getenv(name)
	if raw == "" {
		return defaultVal
	}
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return defaultVal
	}
	return val
}

// GetEnvAsSlice splits an environment variable on sep. The default is
// returned as-is when the variable is unset; elements are not trimmed.
func GetEnvAsSlice(name string, defaultVal []string, sep string) []string {
	raw := os.Getenv(name)
	if raw == "" {
		return defaultVal
	}
	return strings.Split(raw, sep)
}
