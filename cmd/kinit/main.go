// SPDX-License-Identifier: Apache-2.0

// Command kinit performs a Kerberos AS exchange from the command line,
// using either a keytab or an interactively-prompted password, and writes
// a summary of the resulting credentials and the ticket to a file at the
// credential cache path. That file is not in the MIT ccache format.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/spf13/cobra"

	"github.com/jcmturner/gokrb5/v8/config"
	"github.com/jcmturner/gokrb5/v8/crypto"
	"github.com/jcmturner/gokrb5/v8/iana/etypeID"
	"github.com/jcmturner/gokrb5/v8/keytab"
	"github.com/jcmturner/gokrb5/v8/types"

	krb5 "github.com/kennymacdonald/krb5"
)

const dialTimeout = 5 * time.Second

type cliFlags struct {
	principal   string
	keytabPath  string
	configPath  string
	ccachePath  string
	forwardable bool
	renewable   time.Duration
	lifetime    time.Duration
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatal(err)
	}
}

func newRootCmd() *cobra.Command {
	var f cliFlags

	cmd := &cobra.Command{
		Use:   "kinit <principal>",
		Short: "Obtain and cache Kerberos initial credentials",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			f.principal = args[0]
			return run(f)
		},
	}

	cmd.Flags().StringVarP(&f.keytabPath, "keytab", "k", "", "keytab path (default: $KRB5_KTNAME or /var/kerberos/krb5/user/<uid>/client.keytab)")
	cmd.Flags().StringVarP(&f.configPath, "config", "c", "", "krb5.conf path (default: $KRB5_CONFIG or /etc/krb5.conf)")
	cmd.Flags().StringVar(&f.ccachePath, "cache", "", "destination ccache path (default: $KRB5CCNAME or /tmp/krb5cc_<uid>)")
	cmd.Flags().BoolVarP(&f.forwardable, "forwardable", "f", false, "request a forwardable ticket")
	cmd.Flags().DurationVarP(&f.renewable, "renewable", "r", 0, "request a renewable ticket with the given maximum renew lifetime")
	cmd.Flags().DurationVarP(&f.lifetime, "lifetime", "l", 24*time.Hour, "requested ticket lifetime")

	return cmd
}

func run(f cliFlags) error {
	name, realm, err := splitPrincipal(f.principal)
	if err != nil {
		return err
	}

	cfgPath := f.configPath
	if cfgPath == "" {
		cfgPath = krbConfFile()
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("kinit: loading krb5.conf: %w", err)
	}

	client := krb5.NewPrincipal(realm, strings.Split(name, "/")...)
	src := krb5.NewConfigSource(cfg)

	caps, err := buildCapabilities(f, client, cfg)
	if err != nil {
		return err
	}

	opts := krb5.Options{
		Forwardable:   boolPtr(f.forwardable),
		TicketLifetime: f.lifetime,
		RenewLifetime:  f.renewable,
	}

	ctx, err := krb5.NewContext(client, krb5.Principal{}, caps, src, opts, krb5.ValidateOptions{})
	if err != nil {
		return fmt.Errorf("kinit: %w", err)
	}

	kdcs := resolveKDCs(cfg, realm)
	if len(kdcs) == 0 {
		return fmt.Errorf("kinit: no KDCs configured for realm %s", realm)
	}

	send := udpThenTCPSender(kdcs)

	creds, err := krb5.GetInitialCredentials(context.Background(), ctx, realm, send)
	if err != nil {
		return fmt.Errorf("kinit: %w", err)
	}

	ccPath := f.ccachePath
	if ccPath == "" {
		ccPath = krbCCFile()
	}

	// Writing a MIT-compatible credentials cache is itself an external
	// collaborator this package treats as out of scope (spec.md §1): a
	// real deployment supplies a Capabilities.Cache backed by its own
	// ccache encoder. This demonstration cache is not that encoder, only
	// a stand-in that proves the CredentialCache seam is exercised.
	if err := (fileCache{path: ccPath}).Store(&creds); err != nil {
		return fmt.Errorf("kinit: writing credentials cache: %w", err)
	}

	fmt.Printf("kinit: credentials for %s cached in %s, valid until %s\n", client, ccPath, creds.EndTime.Format(time.RFC3339))
	return nil
}

// fileCache is a minimal krb5.CredentialCache that records a completed
// exchange's principals, validity window and ticket to a local file, for
// demonstration purposes only. The session key is not written.
type fileCache struct {
	path string
}

func (c fileCache) Store(creds *krb5.Credentials) error {
	f, err := os.OpenFile(c.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	fmt.Fprintf(f, "%s for %s, valid %s to %s\n",
		creds.Client, creds.Server,
		creds.StartTime.Format(time.RFC3339), creds.EndTime.Format(time.RFC3339))
	_, err = f.Write(creds.Ticket)
	return err
}

func buildCapabilities(f cliFlags, client krb5.Principal, cfg *config.Config) (krb5.Capabilities, error) {
	ktPath := f.keytabPath
	if ktPath == "" {
		ktPath = krbKtFile()
	}

	if _, err := os.Stat(ktPath); err == nil {
		kt, err := keytab.Load(ktPath)
		if err != nil {
			return krb5.Capabilities{}, fmt.Errorf("kinit: loading keytab: %w", err)
		}
		return krb5.Capabilities{GAK: keytabGAK(kt)}, nil
	}

	return krb5.Capabilities{GAK: promptedPasswordGAK(client)}, nil
}

// keytabGAK implements krb5.GAKFunc from a loaded keytab, the non-interactive
// path a service or scheduled job uses instead of a password prompt.
func keytabGAK(kt *keytab.Keytab) krb5.GAKFunc {
	return func(client krb5.Principal, salt string, _ []byte, etype int32) (types.EncryptionKey, error) {
		want := etype
		if want == 0 {
			want = etypeID.AES256_CTS_HMAC_SHA1_96
		}
		key, _, err := kt.GetEncryptionKey(client.Name, client.Realm, 0, want)
		if err != nil {
			return types.EncryptionKey{}, fmt.Errorf("no keytab entry for %s (etype %d): %w", client, want, err)
		}
		return key, nil
	}
}

// promptedPasswordGAK implements krb5.GAKFunc by reading a password from the
// controlling terminal without echoing it, then deriving the long-term key
// via string-to-key (spec.md §4.4 external collaborator "string2key").
func promptedPasswordGAK(client krb5.Principal) krb5.GAKFunc {
	return func(_ krb5.Principal, salt string, s2kparams []byte, etype int32) (types.EncryptionKey, error) {
		want := etype
		if want == 0 {
			want = etypeID.AES256_CTS_HMAC_SHA1_96
		}

		fmt.Fprintf(os.Stderr, "Password for %s: ", client)
		password, err := readPassword()
		if err != nil {
			return types.EncryptionKey{}, fmt.Errorf("reading password: %w", err)
		}

		et, err := crypto.GetEtype(want)
		if err != nil {
			return types.EncryptionKey{}, err
		}
		keyBytes, err := et.StringToKey(password, salt, s2kparams)
		if err != nil {
			return types.EncryptionKey{}, err
		}
		return types.EncryptionKey{KeyType: want, KeyValue: keyBytes}, nil
	}
}

func readPassword() (string, error) {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		b, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		return string(b), err
	}
	r := bufio.NewReader(os.Stdin)
	line, err := r.ReadString('\n')
	return strings.TrimRight(line, "\r\n"), err
}

// udpThenTCPSender implements krb5.SendToKDC: it tries each configured KDC
// over UDP, falling back to TCP when the driver reports tcpOnly (after
// RESPONSE_TOO_BIG) or when UDP itself fails.
func udpThenTCPSender(kdcs []string) krb5.SendToKDC {
	return func(ctx context.Context, packet []byte, realm string, tcpOnly bool) ([]byte, error) {
		var lastErr error
		for _, addr := range kdcs {
			network := "udp"
			if tcpOnly {
				network = "tcp"
			}
			reply, err := sendOnce(ctx, network, addr, packet)
			if err == nil {
				return reply, nil
			}
			lastErr = err
			if !tcpOnly {
				if reply, err2 := sendOnce(ctx, "tcp", addr, packet); err2 == nil {
					return reply, nil
				}
			}
		}
		return nil, fmt.Errorf("no reachable KDC for realm %s: %w", realm, lastErr)
	}
}

func sendOnce(ctx context.Context, network, addr string, packet []byte) ([]byte, error) {
	d := net.Dialer{Timeout: dialTimeout}
	conn, err := d.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if network == "tcp" {
		var length [4]byte
		n := len(packet)
		length[0] = byte(n >> 24)
		length[1] = byte(n >> 16)
		length[2] = byte(n >> 8)
		length[3] = byte(n)
		if _, err := conn.Write(append(length[:], packet...)); err != nil {
			return nil, err
		}
	} else {
		if _, err := conn.Write(packet); err != nil {
			return nil, err
		}
	}

	buf := make([]byte, 65536)
	n, err := conn.Read(buf)
	if err != nil {
		return nil, err
	}
	if network == "tcp" && n >= 4 {
		return buf[4:n], nil
	}
	return buf[:n], nil
}

func resolveKDCs(cfg *config.Config, realm string) []string {
	_, kdcs, err := cfg.GetKDCs(realm, true)
	if err != nil {
		return nil
	}
	return kdcs
}

func splitPrincipal(p string) (name, realm string, err error) {
	i := strings.LastIndexByte(p, '@')
	if i < 0 {
		return "", "", errors.New("kinit: principal must be in the form name@REALM")
	}
	return p[:i], p[i+1:], nil
}

func boolPtr(b bool) *bool { return &b }

func krbConfFile() string {
	if v, ok := os.LookupEnv("KRB5_CONFIG"); ok {
		return v
	}
	return "/etc/krb5.conf"
}

func krbCCFile() string {
	if v, ok := os.LookupEnv("KRB5CCNAME"); ok {
		return strings.TrimPrefix(v, "FILE:")
	}
	return fmt.Sprintf("/tmp/krb5cc_%d", os.Getuid())
}

func krbKtFile() string {
	if v, ok := os.LookupEnv("KRB5_KTNAME"); ok {
		return strings.TrimPrefix(v, "FILE:")
	}
	return fmt.Sprintf("/var/kerberos/krb5/user/%d/client.keytab", os.Getuid())
}
