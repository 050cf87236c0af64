package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths bypass authentication: health checks and the metrics scrape.
var publicPaths = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

// AuthSkipper reports whether the matched route is public. Pass it as
// JWTConfig.Skipper.
func AuthSkipper(c echo.Context) bool {
	return publicPaths[c.Path()]
}

func IsPublicPath(path string) bool {
	return publicPaths[path]
}
