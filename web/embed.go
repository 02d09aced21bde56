// Package web embeds the voice console assets for single-binary distribution.
package web

import "embed"

//go:embed static
var Assets embed.FS
