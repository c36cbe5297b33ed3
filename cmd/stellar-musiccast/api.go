package main

import (
	"encoding/json"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-musiccast/internal/domain/registry"
	"github.com/edumarques81/stellar-musiccast/internal/version"
)

// DeviceLister is the registry view served over HTTP.
type DeviceLister interface {
	Devices() []registry.Device
	ManageableDevices() []registry.Device
}

type healthStatus struct {
	Status     string `json:"status"`
	Devices    int    `json:"devices"`
	Manageable int    `json:"manageable"`
	Clients    int    `json:"clients"`
}

// newMux builds the HTTP routes. socket may be nil in tests; staticDir may be empty.
func newMux(socket http.Handler, devices DeviceLister, clients func() int, staticDir string) *http.ServeMux {
	mux := http.NewServeMux()

	if socket != nil {
		mux.Handle("/socket.io/", socket)
	}

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		st := healthStatus{
			Status:     "ok",
			Devices:    len(devices.Devices()),
			Manageable: len(devices.ManageableDevices()),
		}
		if clients != nil {
			st.Clients = clients()
		}
		writeJSON(w, st)
	})

	mux.HandleFunc("/api/v1/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, version.GetInfo())
	})

	mux.HandleFunc("/api/v1/devices", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		manageable := false
		if v := r.URL.Query().Get("manageable"); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				http.Error(w, "manageable must be a boolean", http.StatusBadRequest)
				return
			}
			manageable = b
		}
		if manageable {
			writeJSON(w, devices.ManageableDevices())
			return
		}
		writeJSON(w, devices.Devices())
	})

	if staticDir != "" {
		log.Info().Str("dir", staticDir).Msg("Serving static files")
		mux.Handle("/", spaHandler(staticDir))
	}

	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("Failed to write response")
	}
}

// spaHandler serves files from dir and falls back to index.html for unknown
// paths so client-side routes resolve.
func spaHandler(dir string) http.Handler {
	files := http.FileServer(http.Dir(dir))
	index := filepath.Join(dir, "index.html")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clean := path.Clean("/" + r.URL.Path)
		if clean == "/" {
			http.ServeFile(w, r, index)
			return
		}
		if _, err := os.Stat(filepath.Join(dir, filepath.FromSlash(clean))); os.IsNotExist(err) {
			http.ServeFile(w, r, index)
			return
		}
		files.ServeHTTP(w, r)
	})
}
