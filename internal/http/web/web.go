// Package web embeds the browser client served at "/".
package web

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed static
var assets embed.FS

// Assets serves the static directory. Mount it under "/static".
func Assets() http.FileSystem {
	sub, err := fs.Sub(assets, "static")
	if err != nil {
		panic(err)
	}
	return http.FS(sub)
}

func Index() []byte {
	b, err := assets.ReadFile("static/index.html")
	if err != nil {
		panic(err)
	}
	return b
}
