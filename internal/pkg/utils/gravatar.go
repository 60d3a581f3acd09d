package utils

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
)

// GetGravatarURL returns the Gravatar image of email, a generic silhouette
// when none is registered. size defaults to 200px.
func GetGravatarURL(email string, size int) string {
	if size <= 0 {
		size = 200
	}

	hash := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(email))))
	return fmt.Sprintf("https://www.gravatar.com/avatar/%s?s=%d&d=mp", hex.EncodeToString(hash[:]), size)
}

// AvatarOrGravatar keeps a provider supplied avatar and falls back to Gravatar
func AvatarOrGravatar(avatarURL, email string) string {
	if strings.TrimSpace(avatarURL) != "" {
		return avatarURL
	}
	return GetGravatarURL(email, 0)
}
