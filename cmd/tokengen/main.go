// Package main provides a CLI tool for minting portal session tokens against
// a locally running server. Tokens signed with the dev key will NOT work in
// production.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"tradegate/internal/auth"
	id "tradegate/pkg/domain"
)

// Dev signing key - matches config.go when SESSION_SIGNING_KEY is not set
const devSigningKey = "dev-secret-key-change-in-production"

const defaultTTL = 8 * time.Hour

type tokenOutput struct {
	Token     string `json:"token"`
	UserID    string `json:"userId"`
	PartnerID string `json:"partnerId"`
	Role      string `json:"role"`
	ExpiresAt string `json:"expiresAt"`
	Usage     string `json:"usage"`
}

func main() {
	userID := flag.String("user-id", "", "User ID. Generated if empty.")
	partnerID := flag.String("partner-id", "", "Partner ID (UUID). Generated if empty.")
	role := flag.String("role", string(id.RolePartnerAdmin), "Role: PartnerUser, PartnerAdmin, or InternalSupport")
	ttl := flag.Duration("ttl", defaultTTL, "Token time-to-live")
	signingKey := flag.String("signing-key", devSigningKey, "Session signing key the server was started with")
	asJSON := flag.Bool("json", false, "Output as JSON")
	flag.Parse()

	if *userID == "" {
		*userID = "user-" + uuid.NewString()[:8]
	}
	if *partnerID == "" {
		*partnerID = uuid.NewString()
	}

	partner, err := id.ParsePartnerID(*partnerID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid partner id: %v\n", err)
		os.Exit(1)
	}
	sessionRole := id.Role(*role)
	if !sessionRole.Valid() {
		fmt.Fprintf(os.Stderr, "invalid role %q\n", *role)
		os.Exit(1)
	}

	tokens := auth.NewTokenService(*signingKey, *ttl)
	token, _, expiresAt, err := tokens.Issue(*userID, partner, sessionRole)
	if err != nil {
		fmt.Fprintf(os.Stderr, "issue token: %v\n", err)
		os.Exit(1)
	}

	out := tokenOutput{
		Token:     token,
		UserID:    *userID,
		PartnerID: partner.String(),
		Role:      sessionRole.String(),
		ExpiresAt: expiresAt.Format(time.RFC3339),
		Usage:     "curl -H 'X-Session-Token: <token>' http://localhost:8080/api/keys",
	}
	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
		return
	}

	fmt.Println("Session token:")
	fmt.Println("  " + out.Token)
	fmt.Println()
	fmt.Printf("  user:    %s\n", out.UserID)
	fmt.Printf("  partner: %s\n", out.PartnerID)
	fmt.Printf("  role:    %s\n", out.Role)
	fmt.Printf("  expires: %s\n", out.ExpiresAt)
	fmt.Println()
	fmt.Println("Usage: " + out.Usage)
}
