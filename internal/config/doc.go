// Package config defines the publishing settings and loads them from an
// optional YAML file and SM_* environment variables.
//
// Secrets such as API keys may be left out of the file; commands fall back
// to the operating system keyring for them.
package config
