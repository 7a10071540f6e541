package manhwa

import "encoding/base64"

// GroupKey addresses one broadcast group. Keys are only produced by
// EncodeSeriesID (or the reserved constants below), never assembled ad hoc,
// so distinct series can never collide on a group name.
type GroupKey string

// QtGroup is the reserved control-plane group joined by the translation GUI.
const QtGroup GroupKey = "qt"

const seriesGroupPrefix = "download_translate_"

// EncodeSeriesID derives the broadcast group key for a series. Series ids
// are toonkor paths containing '/' and arbitrary unicode; raw URL-safe
// base64 keeps the key injective while staying a legal group-name token.
func EncodeSeriesID(seriesID string) GroupKey {
	return GroupKey(seriesGroupPrefix + base64.RawURLEncoding.EncodeToString([]byte(seriesID)))
}
