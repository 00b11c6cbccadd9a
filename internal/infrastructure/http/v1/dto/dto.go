package dto

type ViewportRequest struct {
	Lon      float64 `json:"lon" validate:"gte=-180,lte=180"`
	Lat      float64 `json:"lat" validate:"gte=-85.0511287798066,lte=85.0511287798066"`
	Zoom     float64 `json:"zoom" validate:"gte=0,lte=29"`
	Rotation float64 `json:"rotation"`
	Tilt     float64 `json:"tilt" validate:"gte=0,lt=1.5707963267948966"`
	Width    float64 `json:"width" validate:"required,gt=0,lte=8192"`
	Height   float64 `json:"height" validate:"required,gt=0,lte=8192"`
}

type DarkModeRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

type OffsetRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type VisibilityRequest struct {
	Hidden *bool `json:"hidden" validate:"required"`
}

type SourceRequest struct {
	Preset        string `json:"preset" validate:"required_without=URL"`
	Name          string `json:"name"`
	Identifier    string `json:"identifier"`
	URL           string `json:"url" validate:"omitempty,url"`
	MaxZoom       int    `json:"max_zoom" validate:"gte=0,lte=29"`
	RoundZoomUp   bool   `json:"round_zoom_up"`
	APIKey        string `json:"api_key"`
	WMSProjection string `json:"wms_projection"`
}

// BoundRequest is a lon/lat box. An empty box means the current view.
type BoundRequest struct {
	West  float64 `json:"west" validate:"gte=-180,lte=180"`
	South float64 `json:"south" validate:"gte=-85.0511287798066,lte=85.0511287798066"`
	East  float64 `json:"east" validate:"gte=-180,lte=180"`
	North float64 `json:"north" validate:"gte=-85.0511287798066,lte=85.0511287798066"`
}

type PrefetchRequest struct {
	Bound *BoundRequest `json:"bound"`
	Zoom  float64       `json:"zoom" validate:"gte=0,lte=29"`
}

type TilesResponse struct {
	Count int `json:"count"`
	Tiles any `json:"tiles"`
}

type StatusResponse struct {
	InFlight int  `json:"in_flight"`
	DarkMode bool `json:"dark_mode"`
	Source   any  `json:"source"`
}
