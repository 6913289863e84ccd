// Package auth is the dashboard's password authentication capability.
//
// It verifies bcrypt password hashes held by a credential store, issues
// HS256 access/refresh token pairs and publishes auth state changes
// (SIGNED_IN, SIGNED_OUT, TOKEN_REFRESHED, USER_UPDATED) to listeners.
//
// # Basic Usage
//
//	creds, _ := auth.NewCredentialStore("memory", auth.RepositoryConfig{})
//	tokens := tokengenerator.NewJwtTokenGenerator(secret, "admin-dashboard", "dashboard")
//	svc := auth.NewService(creds, tokens,
//		auth.WithPwdComplex(auth.PasswordComplexity{RequiredLength: 8}),
//	)
//
//	unsubscribe := svc.OnAuthStateChange(func(event backend.AuthEvent, s *backend.Session) {
//		slog.Info("auth event", "event", event)
//	})
//	defer unsubscribe()
//
//	session, err := svc.SignInWithPassword(ctx, "jane@example.com", "secret123")
//
// Signing out revokes every token of the session. Refreshing rotates both
// tokens and revokes the previous pair.
package auth
