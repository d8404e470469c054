package cdek

import (
	"crypto/md5"
	"encoding/hex"
)

// Sign computes the calculator authentication digest: the hex MD5 of
// "<date>&<secret>". The algorithm is fixed by the carrier.
func Sign(date, secret string) string {
	sum := md5.Sum([]byte(date + "&" + secret))
	return hex.EncodeToString(sum[:])
}
