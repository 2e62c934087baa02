// File: server/static.go
// Package server: static-file branch of the handshake.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"log/slog"
)

// maxStaticFileSize bounds the transient buffer a response is read into;
// anything larger answers 500.
const maxStaticFileSize = 1 << 20 // 1 MiB

// serveStatic answers a non-upgrade GET from the configured static root.
// The request path "/" maps to "/index.html"; paths with ".." or a NUL
// byte are rejected outright.
func (s *Server) serveStatic(w io.Writer, reqPath string) {
	if reqPath == "/" {
		reqPath = "/index.html"
	}
	if strings.Contains(reqPath, "..") || strings.ContainsRune(reqPath, 0) {
		writeHTTPError(w, 400, "Bad Request")
		return
	}

	full := filepath.Join(s.staticDir, filepath.FromSlash(path.Clean("/"+reqPath)))
	f, err := os.Open(full)
	if err != nil {
		if os.IsNotExist(err) {
			writeHTTPError(w, 404, "Not Found")
		} else {
			writeHTTPError(w, 500, "Internal Server Error")
		}
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxStaticFileSize+1))
	if err != nil {
		writeHTTPError(w, 500, "Internal Server Error")
		return
	}
	if len(data) > maxStaticFileSize {
		s.log.Warn("static file above size limit", slog.String("path", reqPath), slog.Int("limit", maxStaticFileSize))
		writeHTTPError(w, 500, "Internal Server Error")
		return
	}

	header := fmt.Sprintf(
		"HTTP/1.1 200 OK\r\nContent-Type: %s\r\nContent-Length: %d\r\nConnection: close\r\n\r\n",
		contentTypeFor(reqPath), len(data))
	if _, err := w.Write([]byte(header)); err != nil {
		return
	}
	w.Write(data)
}

// contentTypeFor infers the response content type from the path suffix.
func contentTypeFor(p string) string {
	switch {
	case strings.HasSuffix(p, ".html"):
		return "text/html"
	case strings.HasSuffix(p, ".js"):
		return "application/javascript"
	case strings.HasSuffix(p, ".css"):
		return "text/css"
	case strings.HasSuffix(p, ".json"):
		return "application/json"
	}
	return "application/octet-stream"
}

func writeHTTPError(w io.Writer, code int, reason string) {
	fmt.Fprintf(w, "HTTP/1.1 %d %s\r\nContent-Length: 0\r\nConnection: close\r\n\r\n", code, reason)
}
