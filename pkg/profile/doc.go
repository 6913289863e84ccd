// Package profile implements the settings flow of the signed-in user:
// profile edits, password changes and avatar uploads.
//
// Profile edits are persisted first and then merged into the session's auth
// state, so the role and permissions of the session are not reloaded.
//
// # Basic Usage
//
//	svc := profile.NewService(repo, storage, provider)
//
//	// Update the full name and push it into the session state
//	p, err := svc.UpdateProfile(ctx, userID, backend.UpdateProfileParams{
//		FullName: &name,
//	}, store)
//
//	// Replace the avatar
//	p, err = svc.UploadAvatar(ctx, userID, file, header.Size, contentType, store)
package profile
