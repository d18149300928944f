package dto

type ProviderRequest struct {
	PathTemplate string `json:"path_template" validate:"omitempty,max=1024,tile_path"`
	TileSize     int    `json:"tile_size" validate:"required,min=1,max=1024"`
	FloorZoom    *int   `json:"floor_zoom" validate:"required,min=0,max=30"`
	OutputFormat string `json:"output_format" validate:"required,oneof=jpeg png"`
	Quality      int    `json:"quality" validate:"omitempty,min=1,max=100"`
}

type ProviderResponse struct {
	Store        string `json:"store"`
	PathTemplate string `json:"path_template,omitempty"`
	TileSize     int    `json:"tile_size"`
	FloorZoom    int    `json:"floor_zoom"`
	OutputFormat string `json:"output_format"`
	Quality      int    `json:"quality"`
}

// RemoteProviderRequest bounds are inclusive; zero disables a bound.
type RemoteProviderRequest struct {
	URLTemplate string `json:"url_template" validate:"required,http_url"`
	MinimumZ    int    `json:"minimum_z" validate:"min=0,max=30"`
	MaximumZ    int    `json:"maximum_z" validate:"min=0,max=30"`
}

type RemoteProviderResponse struct {
	URLTemplate string `json:"url_template"`
	MinimumZ    int    `json:"minimum_z"`
	MaximumZ    int    `json:"maximum_z"`
}
