package oauthlaunch

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// PromptBrowser is a terminal Browser. It prints the authorize URL and reads
// the redirected callback URL back, one line. "cancel" cancels and an empty
// line dismisses.
type PromptBrowser struct {
	in  *bufio.Reader
	out io.Writer
}

func NewPromptBrowser(in io.Reader, out io.Writer) *PromptBrowser {
	return &PromptBrowser{in: bufio.NewReader(in), out: out}
}

func (b *PromptBrowser) OpenAuthSession(ctx context.Context, authURL, returnURL string) (BrowserResult, error) {
	fmt.Fprintf(b.out, "Open this URL to sign in:\n\n  %s\n\nPaste the %s... URL you were redirected to (or \"cancel\"):\n> ", authURL, returnURL)

	type line struct {
		text string
		err  error
	}
	read := make(chan line, 1)
	go func() {
		text, err := b.in.ReadString('\n')
		read <- line{text: text, err: err}
	}()

	var l line
	select {
	case l = <-read:
	case <-ctx.Done():
		return BrowserResult{Type: ResultDismiss}, ctx.Err()
	}

	text := strings.TrimSpace(l.text)
	if l.err != nil && (l.err != io.EOF || text == "") {
		if l.err == io.EOF {
			return BrowserResult{Type: ResultDismiss}, nil
		}
		return BrowserResult{}, l.err
	}

	switch {
	case strings.EqualFold(text, "cancel"):
		return BrowserResult{Type: ResultCancel}, nil
	case text == "":
		return BrowserResult{Type: ResultDismiss}, nil
	}
	return BrowserResult{Type: ResultSuccess, URL: text}, nil
}
