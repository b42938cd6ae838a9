package claude

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/skratchdot/open-golang/open"
)

// Login runs the interactive PKCE flow and saves the resulting token file
// into authDir. It prints the authorization URL, tries to open the browser,
// and waits for the pasted code#state response on stdin.
//
// Parameters:
//   - ctx: The context for the code exchange
//   - authDir: The directory where the token file is written
//
// Returns:
//   - string: The path of the saved token file
//   - error: An error if any step of the flow fails, nil otherwise
func (a *ClaudeAuth) Login(ctx context.Context, authDir string) (string, error) {
	state := uuid.NewString()
	authURL, verifier := a.AuthorizationURL(state)

	fmt.Println("Open the following URL in your browser to authorize:")
	fmt.Println(authURL)
	if err := open.Run(authURL); err != nil {
		log.Debugf("[Claude Auth] Failed to open browser automatically: %v", err)
	}

	fmt.Print("Paste the authorization code here: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read authorization code: %w", err)
	}
	code, pastedState := splitAuthorizationCode(strings.TrimSpace(line))
	if code == "" {
		return "", fmt.Errorf("authorization code is empty")
	}
	if pastedState != "" && pastedState != state {
		return "", fmt.Errorf("authorization state mismatch")
	}

	token, err := a.ExchangeCode(ctx, code, state, verifier)
	if err != nil {
		return "", fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	fileName := "claude.json"
	if token.Email != "" {
		fileName = fmt.Sprintf("claude-%s.json", token.Email)
	}
	tokenPath := filepath.Join(authDir, fileName)
	if err = token.SaveTokenToFile(tokenPath); err != nil {
		return "", err
	}
	log.Infof("[Claude Auth] Login successful, credentials saved to %s", tokenPath)
	return tokenPath, nil
}

// splitAuthorizationCode splits the pasted "code#state" response from the
// manual-copy callback page. Input without a fragment yields an empty state.
func splitAuthorizationCode(raw string) (string, string) {
	code, state, _ := strings.Cut(raw, "#")
	return strings.TrimSpace(code), strings.TrimSpace(state)
}
