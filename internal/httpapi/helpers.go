package httpapi

import "strconv"

func parseSteamID(s string) (uint64, error) {
	return strconv.ParseUint(s, 10, 64)
}

func parseSteamIDString(steamID uint64) string {
	return strconv.FormatUint(steamID, 10)
}
