package metrics

import "strings"

// Normalize collapses dynamic route segments so that requests differing only
// in a status code, delay, hop count, or wildcard suffix share one key.
//
//	/status/404        -> /status/:code
//	/delay/5           -> /delay/:n
//	/redirect/3        -> /redirect/:n
//	/anything/foo/bar  -> /anything/*path
//	/cookies/set       -> /cookies/set
//
// Everything else passes through unchanged.
func Normalize(path string) string {
	segments := strings.Split(path, "/")
	if len(segments) < 3 {
		return path
	}

	switch segments[1] {
	case "status":
		return "/status/:code"
	case "delay":
		return "/delay/:n"
	case "redirect":
		return "/redirect/:n"
	case "anything":
		return "/anything/*path"
	case "cookies":
		return "/cookies/" + segments[2]
	default:
		return path
	}
}
