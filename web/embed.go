// Package web provides the embedded info page served at the exporter root.
//
// The page is compiled into the binary so the exporter ships as a single
// file. The server package substitutes the configured metrics endpoint into
// it at request time.
package web

import "embed"

// Assets is an embedded filesystem containing the info page.
//
// The filesystem structure is:
//
//	assets/
//	  index.html    - Info page; {{.Endpoint}} is replaced with the metrics path
//
//go:embed assets/*
var Assets embed.FS
