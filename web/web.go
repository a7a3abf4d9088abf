// Package web embeds the static app shell served at the site root.
package web

import (
	"embed"
	"io/fs"
	"net/http"
	"strings"
)

//go:embed static
var static embed.FS

// Assets - оболочка приложения, которую офлайн-кэш сохраняет при установке
var Assets = []string{
	"/",
	"/index.html",
	"/login.html",
	"/css/style.css",
	"/js/app.js",
	"/manifest.json",
}

func FS() fs.FS {
	sub, err := fs.Sub(static, "static")
	if err != nil {
		panic(err)
	}
	return sub
}

// Handler раздает оболочку; HTML и манифест не кэшируются браузером,
// чтобы обновление подхватывалось офлайн-кэшем
func Handler() http.Handler {
	files := http.FileServer(http.FS(FS()))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := r.URL.Path
		if p == "/" || strings.HasSuffix(p, ".html") || strings.HasSuffix(p, ".json") {
			w.Header().Set("Cache-Control", "no-cache")
		}
		// FileServer перенаправляет /index.html на /, а офлайн-кэш сохраняет оба адреса
		if p == "/index.html" {
			r2 := r.Clone(r.Context())
			r2.URL.Path = "/"
			r = r2
		}
		files.ServeHTTP(w, r)
	})
}
