package version

import (
	"net/http"

	"github.com/citizenwallet/boxdao/internal/common"
)

// Version is overridden at build time with -ldflags "-X .../internal/version.Version=..."
var Version = "0.1.0"

type Service struct{}

func NewService() *Service {
	return &Service{}
}

type response struct {
	Version string `json:"version"`
}

// Current returns the current version of the API
func (s *Service) Current(w http.ResponseWriter, r *http.Request) {
	err := common.Body(w, &response{Version: Version}, nil)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
	}
}
