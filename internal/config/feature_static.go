//go:build magicksys_static

package config

// staticFeature forces a source build when compiled with -tags magicksys_static.
const staticFeature = true
