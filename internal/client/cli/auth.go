package cli

import (
	"context"

	"github.com/dmitrijs2005/scanpass/internal/common"
)

// getSimpleText, getPassword and getVideo are indirections used to facilitate
// testing. They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword
var getVideo = GetVideo

// Register prompts for a username and password and creates a password
// account. The session token is kept by the client.
func (a *App) Register(ctx context.Context) error {
	userName, err := getSimpleText(a.reader, "Enter username", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	res, err := a.client.Register(ctx, userName, string(password))
	if err != nil {
		return err
	}

	a.userName = userName
	a.printf("%s\n", res.Message)
	a.printf("Next: record your object and run 'enroll'.\n")
	return nil
}

// RegisterVisual creates an account whose only credential is the object in
// the given video.
func (a *App) RegisterVisual(ctx context.Context) error {
	userName, err := getSimpleText(a.reader, "Enter username", a.out)
	if err != nil {
		return err
	}

	video, err := getVideo(a.reader, "Path to a video of your object", a.config.MaxVideoBytes, a.out)
	if err != nil {
		return err
	}

	res, err := a.client.RegisterVisual(ctx, userName, video)
	if err != nil {
		return err
	}

	a.userName = userName
	a.printf("%s\n", res.Message)
	a.printf("Frames extracted: %d, embedding size: %d\n", res.Details.FramesExtracted, res.Details.EmbeddingDim)
	return nil
}

// Login verifies a password. Users with an enrolled object are reminded to
// complete the visual step.
func (a *App) Login(ctx context.Context) error {
	userName, err := getSimpleText(a.reader, "Enter username", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	res, err := a.client.Login(ctx, userName, string(password))
	if err != nil {
		return err
	}

	a.userName = userName
	a.printf("%s\n", res.Message)
	if res.NeedsVisualAuth {
		a.printf("Run 'authenticate' to complete the second factor.\n")
	} else if !res.HasObject {
		a.printf("No object enrolled yet. Run 'enroll' to add one.\n")
	}
	return nil
}

// VisualLogin fetches a login challenge for the user, then submits the
// recorded answer. A rejected attempt is reported but is not an error.
func (a *App) VisualLogin(ctx context.Context) error {
	userName, err := getSimpleText(a.reader, "Enter username", a.out)
	if err != nil {
		return err
	}

	ch, err := a.client.LoginChallenge(ctx, userName)
	if err != nil {
		return err
	}
	a.printChallenge(ch)

	video, err := getVideo(a.reader, "Path to the recorded answer", a.config.MaxVideoBytes, a.out)
	if err != nil {
		return err
	}

	res, err := a.client.LoginVisual(ctx, userName, ch.ID, video)
	if err != nil {
		return err
	}

	a.printf("%s\n", res.Message)
	a.printDetails(res.Details, res.AuthLog)
	if res.Success {
		a.userName = userName
	}
	return nil
}

// Logout ends the session on the server and forgets the token.
func (a *App) Logout(ctx context.Context) error {
	if err := a.client.Logout(ctx); err != nil {
		return err
	}
	a.userName = ""
	a.printf("Logged out\n")
	return nil
}
