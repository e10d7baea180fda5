//go:build !magicksys_static

package config

const staticFeature = false
