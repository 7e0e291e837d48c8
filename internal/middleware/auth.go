package middleware

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// KeyPrefix starts every admin key, e.g. "rk_live_..."
const KeyPrefix = "rk_"

// AdminKey guards write routes with a single bearer key. Only the SHA-256
// hex digest of the key is configured (ADMIN_API_KEY_HASH). An empty
// digest disables the check.
func AdminKey(keyHash string) fiber.Handler {
	want := []byte(strings.ToLower(strings.TrimSpace(keyHash)))

	return func(c *fiber.Ctx) error {
		if len(want) == 0 {
			return c.Next()
		}

		// Extract API key from Authorization header
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   "missing_api_key",
				"message": "API key is required. Use Authorization: Bearer YOUR_API_KEY",
			})
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   "invalid_auth_format",
				"message": "Authorization header must be in format: Bearer YOUR_API_KEY",
			})
		}

		apiKey := strings.TrimSpace(parts[1])
		if !strings.HasPrefix(apiKey, KeyPrefix) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   "invalid_api_key_format",
				"message": "API key must start with " + KeyPrefix,
			})
		}

		if subtle.ConstantTimeCompare([]byte(HashKey(apiKey)), want) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   "invalid_api_key",
				"message": "The provided API key is invalid",
			})
		}

		c.Locals("admin", true)
		return c.Next()
	}
}

// HashKey returns the hex SHA-256 digest that is configured instead of the key
func HashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// GenerateKey creates a random admin key for env ("test" or "live") and
// returns it with its digest and a short display prefix.
func GenerateKey(env string) (key, hash, prefix string, err error) {
	randomBytes := make([]byte, 32)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", "", "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	randomStr := hex.EncodeToString(randomBytes)

	// Checksum is the first 2 bytes of the hash of the random part
	checksumBytes := sha256.Sum256([]byte(randomStr))
	checksum := hex.EncodeToString(checksumBytes[:2])

	key = fmt.Sprintf("%s%s_%s_%s", KeyPrefix, env, randomStr, checksum)
	hash = HashKey(key)
	prefix = fmt.Sprintf("%s%s_%s...", KeyPrefix, env, randomStr[:8])
	return key, hash, prefix, nil
}
