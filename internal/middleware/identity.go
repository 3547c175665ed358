package middleware

// identity.go holds helpers shared across middleware files for reading the
// authenticated identity out of the Echo context. JWTAuth stores the raw
// "sub" claim, which the JSON decoder yields as float64; unauthenticated
// requests have no claim at all and are bucketed as "anon".

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// currentUserID returns the user id from context as a string for use in
// rate-limit bucket keys.
func currentUserID(c echo.Context) string {
	switch v := c.Get("user_id").(type) {
	case string:
		if v != "" {
			return v
		}
	case float64:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case int64:
		return strconv.FormatInt(v, 10)
	}
	return "anon"
}
