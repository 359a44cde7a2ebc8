package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"vaultx/internal/crypto"
	"vaultx/internal/remote"
	"vaultx/internal/session"
	"vaultx/internal/shard"
	"vaultx/internal/vault"

	"github.com/awnumar/memguard"
)

const help = `Commands:
  register              create an account
  login                 sign in
  setup                 choose vault credentials
  unlock                unlock the vault
  lock                  lock the vault
  up FILE               upload a document
  ls                    list documents
  get N [OUT]           download document N
  rm N                  delete document N
  passwd                change the vault credential
  duress                change the duress credential
  biometric on|off      toggle the biometric shortcut
  delete-account        remove all stored data
  logout                sign out
  q                     quit`

func (a *app) run() {
	reader := bufio.NewReader(os.Stdin)
	var docs []vault.DocumentInfo

	fmt.Println(help)
	for {
		fmt.Printf("\n[%s] > ", stateLabel(a.engine.State()))

		line, err := reader.ReadString('\n')
		if err != nil {
			fmt.Println()
			a.engine.Lock()
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}

		ctx := context.Background()
		switch parts[0] {
		case "register":
			a.handleRegister(ctx, reader)
		case "login":
			a.handleLogin(ctx, reader)
		case "setup":
			a.handleSetup()
		case "unlock":
			a.handleUnlock()
		case "lock":
			a.engine.Lock()
			docs = nil
		case "up":
			if len(parts) < 2 {
				fmt.Println("Specify a file")
				continue
			}
			a.handleUpload(ctx, parts[1])
			docs = nil
		case "ls":
			docs = a.handleList()
		case "get", "rm":
			if len(parts) < 2 {
				fmt.Println("Specify item number")
				continue
			}
			n, err := strconv.Atoi(parts[1])
			if err != nil || n < 1 || n > len(docs) {
				fmt.Println("Invalid item number (run ls first)")
				continue
			}
			doc := docs[n-1]
			if parts[0] == "get" {
				out := doc.DisplayName
				if len(parts) > 2 {
					out = parts[2]
				}
				a.handleGet(ctx, doc, out)
			} else {
				a.handleDelete(ctx, doc)
				docs = nil
			}
		case "passwd":
			a.handleChangeCredential()
		case "duress":
			a.handleChangeDuress(ctx)
		case "biometric":
			if len(parts) < 2 || (parts[1] != "on" && parts[1] != "off") {
				fmt.Println("Use: biometric on|off")
				continue
			}
			a.report(a.engine.SetBiometricEnabled(parts[1] == "on"), "Saved.")
		case "delete-account":
			a.handleDeleteAccount(ctx, reader)
			docs = nil
		case "logout":
			a.report(a.engine.SignOut(ctx), "Signed out.")
			docs = nil
		case "q", "quit", "exit":
			a.engine.Lock()
			fmt.Println("Exiting.")
			return
		case "help", "?":
			fmt.Println(help)
		default:
			fmt.Println("Unknown command")
		}
	}
}

func (a *app) handleRegister(ctx context.Context, reader *bufio.Reader) {
	email := readLine(reader, "Email: ")
	password, err := readNewSecret("Account password: ")
	if err != nil {
		fmt.Println(err)
		return
	}
	defer memguard.WipeBytes(password)

	a.report(a.identity.Register(ctx, email, string(password)), "Account created. Run login.")
}

func (a *app) handleLogin(ctx context.Context, reader *bufio.Reader) {
	email := readLine(reader, "Email: ")
	password, err := readSecret("Account password: ")
	if err != nil {
		fmt.Println(err)
		return
	}
	defer memguard.WipeBytes(password)

	state, err := a.engine.SignIn(ctx, email, string(password))
	if err != nil {
		fmt.Println(describe(err))
		return
	}
	if state == session.IdentityVerified {
		fmt.Println("Signed in. Run setup to create your vault.")
		return
	}
	fmt.Println("Signed in.")
}

func (a *app) handleSetup() {
	fmt.Println("Credentials are 4 to 12 digits. The duress credential opens a separate, harmless vault.")
	primary, err := readNewSecret("Vault credential: ")
	if err != nil {
		fmt.Println(err)
		return
	}
	defer memguard.WipeBytes(primary)

	duress, err := readNewSecret("Duress credential: ")
	if err != nil {
		fmt.Println(err)
		return
	}
	defer memguard.WipeBytes(duress)

	a.report(a.engine.Setup(primary, duress), "Vault ready. Run unlock.")
}

func (a *app) handleUnlock() {
	credential, err := readSecret("Credential: ")
	if err != nil {
		fmt.Println(err)
		return
	}
	defer memguard.WipeBytes(credential)

	a.report(a.engine.Unlock(credential), "Unlocked.")
}

func (a *app) handleUpload(ctx context.Context, path string) {
	f, err := os.Open(path)
	if err != nil {
		fmt.Println("Cannot read file:", err)
		return
	}
	defer f.Close()

	name := filepath.Base(path)
	mimeType := mime.TypeByExtension(filepath.Ext(name))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	info, err := a.engine.Upload(ctx, name, mimeType, f, func(p vault.Progress) {
		if p.Stage == vault.StageTransfer {
			fmt.Printf("\r  uploading %d/%d", p.Done, p.Total)
		}
	})
	fmt.Println()
	if err != nil {
		fmt.Println(describe(err))
		return
	}
	fmt.Printf("Stored %s (%d bytes).\n", info.DisplayName, info.Size)
}

func (a *app) handleList() []vault.DocumentInfo {
	docs, err := a.engine.List()
	if err != nil {
		fmt.Println(describe(err))
		return nil
	}
	if len(docs) == 0 {
		fmt.Println("No documents.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\tNAME\tSIZE\tTYPE\tADDED")
	for i, d := range docs {
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\n", i+1, d.DisplayName, d.Size, d.MimeType, d.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	w.Flush()
	return docs
}

func (a *app) handleGet(ctx context.Context, doc vault.DocumentInfo, out string) {
	plaintext, _, err := a.engine.Download(ctx, doc.ID)
	if err != nil {
		fmt.Println(describe(err))
		return
	}
	defer memguard.WipeBytes(plaintext)

	if _, err := os.Stat(out); err == nil {
		fmt.Printf("%s already exists.\n", out)
		return
	}
	if err := os.WriteFile(out, plaintext, 0600); err != nil {
		fmt.Println("Cannot write file:", err)
		return
	}
	fmt.Printf("Saved to %s.\n", out)
}

func (a *app) handleDelete(ctx context.Context, doc vault.DocumentInfo) {
	a.report(a.engine.Delete(ctx, doc.ID), fmt.Sprintf("Deleted %s.", doc.DisplayName))
}

func (a *app) handleChangeCredential() {
	current, err := readSecret("Current credential: ")
	if err != nil {
		fmt.Println(err)
		return
	}
	defer memguard.WipeBytes(current)

	next, err := readNewSecret("New credential: ")
	if err != nil {
		fmt.Println(err)
		return
	}
	defer memguard.WipeBytes(next)

	a.report(a.engine.ChangeCredential(current, next), "Credential changed.")
}

func (a *app) handleChangeDuress(ctx context.Context) {
	fmt.Println("Documents stored under the old duress credential will be removed.")
	primary, err := readSecret("Vault credential: ")
	if err != nil {
		fmt.Println(err)
		return
	}
	defer memguard.WipeBytes(primary)

	next, err := readNewSecret("New duress credential: ")
	if err != nil {
		fmt.Println(err)
		return
	}
	defer memguard.WipeBytes(next)

	a.report(a.engine.ChangeDuressCredential(ctx, primary, next), "Duress credential changed.")
}

func (a *app) handleDeleteAccount(ctx context.Context, reader *bufio.Reader) {
	if readLine(reader, "Type DELETE to remove every stored document: ") != "DELETE" {
		fmt.Println("Cancelled.")
		return
	}
	a.report(a.engine.DeleteAccountData(ctx), "All data deleted.")
}

func (a *app) report(err error, ok string) {
	if err != nil {
		fmt.Println(describe(err))
		return
	}
	fmt.Println(ok)
}

// stateLabel never tells the real vault from the decoy.
func stateLabel(st session.State) string {
	switch st {
	case session.Unauthenticated:
		return "signed out"
	case session.IdentityVerified:
		return "no vault"
	case session.VaultLocked:
		return "locked"
	case session.VaultUnlocked, session.DecoyUnlocked:
		return "unlocked"
	default:
		return "?"
	}
}

// describe turns engine errors into user-facing text. Failures that could
// reveal which credential was used all read the same.
func describe(err error) string {
	switch {
	case errors.Is(err, vault.ErrCoolingDown):
		return "Too many failed attempts. Try again later."
	case errors.Is(err, session.ErrAuthenticationFailed),
		errors.Is(err, session.ErrUnlockInProgress):
		return "Cannot unlock."
	case errors.Is(err, crypto.ErrInvalidCredential):
		return "Credentials are 4 to 12 digits."
	case errors.Is(err, session.ErrCredentialsMustDiffer):
		return "The two credentials must differ."
	case errors.Is(err, session.ErrAlreadySetUp):
		return "The vault is already set up."
	case errors.Is(err, session.ErrStateViolation):
		return "Not available right now. Is the vault unlocked?"
	case errors.Is(err, vault.ErrDocumentNotFound):
		return "Document not found."
	case errors.Is(err, shard.ErrIncompleteFragmentSet),
		errors.Is(err, shard.ErrCorruptFragmentSet):
		return "Document cannot be opened."
	case errors.Is(err, vault.ErrBiometricUnavailable):
		return "Biometric check is not available."
	case errors.Is(err, remote.ErrUnauthorized):
		return "Sign-in failed."
	case errors.Is(err, remote.ErrStorage):
		return "Storage is unreachable. Try again."
	default:
		return "Error: " + err.Error()
	}
}
