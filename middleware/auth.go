package middleware

import (
	"log"

	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/deemkeen/mammut/util"
)

// AuthMiddleware logs each admin session. Key-level access control is the
// host's job (authorized_keys); the console itself trusts whoever the SSH
// server lets in.
func AuthMiddleware(conf *util.AppConfig) wish.Middleware {
	return func(h ssh.Handler) ssh.Handler {
		return func(s ssh.Session) {
			util.LogPublicKey(s)
			if pk := s.PublicKey(); pk != nil {
				log.Printf("Session key fingerprint: %s", util.PkToHash(util.PublicKeyToString(pk)))
			}
			h(s)
		}
	}
}
