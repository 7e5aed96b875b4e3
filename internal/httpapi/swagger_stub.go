//go:build !swagger

package httpapi

import "github.com/go-chi/chi/v5"

// MountSwagger mounts nothing; build with -tags=swagger to serve /swagger/.
func MountSwagger(chi.Router) {}
