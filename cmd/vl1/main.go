package main

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/google/gopacket"
	"github.com/jessevdk/go-flags"

	"github.com/Sudo-Ivan/vl1-go/internal/storage"
	"github.com/Sudo-Ivan/vl1-go/pkg/cryptography"
	"github.com/Sudo-Ivan/vl1-go/pkg/debug"
	"github.com/Sudo-Ivan/vl1-go/pkg/packet"
	"github.com/Sudo-Ivan/vl1-go/pkg/reassembly"
)

type Options struct {
	Debug   int    `short:"d" long:"debug" description:"Debug level (1-7), overrides the config file"`
	JSONLog bool   `long:"json-log" description:"Log as JSON instead of text"`
	Config  string `short:"c" long:"config" description:"Path to the config file (default ~/.vl1/config)"`

	InterceptOutput string `long:"intercept-output" description:"Write a hex dump of every unit sent or received to this file"`
}

var options Options

var parser = flags.NewParser(&options, flags.Default)

// applyLogging configures the logger from the global options. level is
// used when --debug was not given.
func applyLogging(level int) {
	if options.Debug > 0 {
		level = options.Debug
	}
	if level <= 0 {
		level = debug.DefaultLevel
	}
	debug.SetOutput(os.Stderr, options.JSONLog)
	debug.SetDebugLevel(level)
	debug.Init()
}

type KeygenCommand struct {
	Out    string `short:"o" long:"out" description:"Key file to write" required:"true"`
	Secret string `long:"secret" description:"Hex shared secret to derive the key pair from instead of generating it"`
	Salt   string `long:"salt" description:"HKDF salt used with --secret"`
	Info   string `long:"info" description:"HKDF info used with --secret" default:"vl1 aes-gmac-siv"`
}

func (c *KeygenCommand) Execute(args []string) error {
	applyLogging(0)

	var keys cryptography.KeyPair
	var err error
	if c.Secret != "" {
		secret, decErr := hex.DecodeString(c.Secret)
		if decErr != nil {
			return fmt.Errorf("invalid secret: %w", decErr)
		}
		keys, err = cryptography.DeriveKeyPair(secret, []byte(c.Salt), []byte(c.Info))
	} else {
		keys, err = cryptography.GenerateKeyPair()
	}
	if err != nil {
		return err
	}

	if err := storage.WriteKeyFile(c.Out, keys); err != nil {
		return err
	}
	fmt.Printf("wrote key pair to %s\n", c.Out)
	return nil
}

type SelftestCommand struct{}

func (c *SelftestCommand) Execute(args []string) error {
	applyLogging(0)
	fmt.Printf("AES hardware acceleration: %v\n", cryptography.HardwareAES())
	if err := cryptography.SelfTest(); err != nil {
		return err
	}
	fmt.Println("AES-GMAC-SIV self test passed")
	return nil
}

type SealCommand struct {
	Key  string `short:"k" long:"key" description:"Key file shared with the destination" required:"true"`
	Src  string `long:"src" description:"Source VL1 address" required:"true"`
	Dest string `long:"dest" description:"Destination VL1 address" required:"true"`
	MTU  int    `long:"mtu" description:"Carrier MTU; larger packets are written as numbered fragment files" default:"1432"`
	In   string `short:"i" long:"in" description:"Plaintext file (default stdin)"`
	Out  string `short:"o" long:"out" description:"Output file, or prefix for fragment files" required:"true"`
}

func (c *SealCommand) Execute(args []string) error {
	applyLogging(0)

	keys, err := storage.ReadKeyFile(c.Key)
	if err != nil {
		return err
	}
	var h packet.Header
	if h.Src, err = packet.ParseAddress(c.Src); err != nil {
		return err
	}
	if h.Dest, err = packet.ParseAddress(c.Dest); err != nil {
		return err
	}
	payload, err := readInput(c.In)
	if err != nil {
		return err
	}
	if _, err := rand.Read(h.ID[:]); err != nil {
		return err
	}

	s, err := cryptography.NewAesGmacSiv(keys.K0, keys.K1)
	if err != nil {
		return err
	}
	raw, err := packet.Armor(s, &h, payload, c.MTU)
	if err != nil {
		return err
	}
	units, err := packet.Split(raw, c.MTU)
	if err != nil {
		return err
	}

	if len(units) == 1 {
		return os.WriteFile(c.Out, units[0], 0644)
	}
	for i, unit := range units {
		if err := os.WriteFile(c.Out+"."+strconv.Itoa(i), unit, 0644); err != nil {
			return err
		}
	}
	fmt.Fprintf(os.Stderr, "packet %x split into %d units\n", h.ID, len(units))
	return nil
}

type OpenCommand struct {
	Key  string `short:"k" long:"key" description:"Key file shared with the source" required:"true"`
	Out  string `short:"o" long:"out" description:"Plaintext output file (default stdout)"`
	Args struct {
		Units []string `positional-arg-name:"unit" required:"1"`
	} `positional-args:"yes"`
}

func (c *OpenCommand) Execute(args []string) error {
	applyLogging(0)

	keys, err := storage.ReadKeyFile(c.Key)
	if err != nil {
		return err
	}
	s, err := cryptography.NewAesGmacSiv(keys.K0, keys.K1)
	if err != nil {
		return err
	}

	r := reassembly.New(reassembly.Config{Path: "cli"}, nil)
	var raw []byte
	for _, name := range c.Args.Units {
		unit, err := os.ReadFile(name) // #nosec G304
		if err != nil {
			return err
		}
		if whole, ok := r.Assemble(unit); ok {
			raw = whole
			break
		}
	}
	if raw == nil {
		return errors.New("units do not form a complete packet")
	}

	h, payload, err := packet.Dearmor(s, raw)
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, h.String())

	if c.Out == "" {
		_, err = os.Stdout.Write(payload)
		return err
	}
	return os.WriteFile(c.Out, payload, 0600)
}

type InspectCommand struct {
	Args struct {
		Units []string `positional-arg-name:"unit" required:"1"`
	} `positional-args:"yes"`
}

func (c *InspectCommand) Execute(args []string) error {
	applyLogging(0)

	for _, name := range c.Args.Units {
		data, err := os.ReadFile(name) // #nosec G304
		if err != nil {
			return err
		}
		p := gopacket.NewPacket(data, packet.LayerTypeVL1, gopacket.Default)
		fmt.Printf("%s (%d bytes)\n", name, len(data))
		for _, l := range p.Layers() {
			switch v := l.(type) {
			case *packet.VL1:
				fmt.Printf("  %s\n  encrypted payload: %d bytes\n", v.Header.String(), len(v.Payload))
			case *packet.VL1Fragment:
				fmt.Printf("  %s\n  fragment payload: %d bytes\n", v.FragmentHeader.String(), len(v.Payload))
			}
		}
		if el := p.ErrorLayer(); el != nil {
			fmt.Printf("  decode error: %v\n", el.Error())
		}
	}
	return nil
}

func readInput(path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(io.LimitReader(os.Stdin, packet.MaxPayload+1))
	}
	return os.ReadFile(path) // #nosec G304
}

func main() {
	mustAdd("keygen", "Generate or derive an AES-GMAC-SIV key pair", &KeygenCommand{})
	mustAdd("selftest", "Run the AES-GMAC-SIV known-answer tests", &SelftestCommand{})
	mustAdd("seal", "Armor a payload into VL1 packet units", &SealCommand{})
	mustAdd("open", "Reassemble and dearmor VL1 packet units", &OpenCommand{})
	mustAdd("inspect", "Decode VL1 packet and fragment headers", &InspectCommand{})
	mustAdd("node", "Run a VL1 node on the configured interfaces", &NodeCommand{})
	mustAdd("send", "Send one payload to a configured peer", &SendCommand{})

	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
}

func mustAdd(name, short string, cmd interface{}) {
	if _, err := parser.AddCommand(name, short, short, cmd); err != nil {
		panic(err)
	}
}
