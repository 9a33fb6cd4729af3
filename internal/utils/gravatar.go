package utils

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
)

// GravatarURL builds the public avatar URL for an email address. Gravatar
// keys images by the MD5 of the lowercased, trimmed address; d=identicon
// asks the service to render a generated image when no avatar exists, so
// the URL is always displayable.
func GravatarURL(email string) string {
	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(email))))
	return fmt.Sprintf("https://www.gravatar.com/avatar/%s?d=identicon", hex.EncodeToString(sum[:]))
}
