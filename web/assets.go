package webassets

import "embed"

// Files contains the embedded console assets.
//
// Keep this broad enough so web page updates are automatically packaged in binaries.
//
//go:embed *.html
var Files embed.FS
