package detection

import (
	"net/http"

	"DetectOverlay/pkg/response"
)

var (
	ErrBadRequest       = response.NewError(http.StatusBadRequest, "bad request")
	ErrUnsupportedMedia = response.NewError(http.StatusBadRequest, "unsupported video format")
	ErrInvalidThreshold = response.NewError(http.StatusBadRequest, "confidence_threshold must be between 0.0 and 1.0")
	ErrNoResult         = response.NewError(http.StatusNotFound, "no detection result")
	ErrMediaNotDecoded  = response.NewError(http.StatusConflict, "media has not been decoded")
	ErrPlaybackNotFound = response.NewError(http.StatusNotFound, "playback source not found")
)
