package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"

	"github.com/jessevdk/go-flags"

	"github.com/tjbrennan/remotezip"
)

var opts struct {
	Username string      `short:"u" long:"username" description:"basic auth username"`
	Password string      `short:"p" long:"password" description:"basic auth password"`
	Verify   bool        `long:"verify" description:"verify CRC-32 of extracted members"`
	List     listCommand `command:"list" alias:"ls" description:"list the archive's members"`
	Get      getCommand  `command:"get" alias:"cat" description:"extract a member to stdout"`
}

type listCommand struct {
	Args struct {
		URL string `positional-arg-name:"url" description:"URL of the remote zip archive"`
	} `positional-args:"yes" required:"yes"`
}

func (c *listCommand) Execute(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("unknown positional arguments: %v", args)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	br, err := buildBrowser(ctx, c.Args.URL)
	if err != nil {
		return err
	}
	defer br.Close()

	names, err := br.List(ctx)
	if err != nil {
		return fmt.Errorf("list error: %w", err)
	}
	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}

type getCommand struct {
	Args struct {
		URL  string `positional-arg-name:"url" description:"URL of the remote zip archive"`
		Name string `positional-arg-name:"name" description:"member name to extract"`
	} `positional-args:"yes" required:"yes"`
}

func (c *getCommand) Execute(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("unknown positional arguments: %v", args)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	br, err := buildBrowser(ctx, c.Args.URL)
	if err != nil {
		return err
	}
	defer br.Close()

	r, err := br.Get(ctx, c.Args.Name)
	if err != nil {
		return fmt.Errorf("get %q error: %w", c.Args.Name, err)
	}
	if r == nil {
		return fmt.Errorf("no such member: %q", c.Args.Name)
	}

	_, err = io.Copy(os.Stdout, r)
	return err
}

func buildBrowser(ctx context.Context, url string) (*remotezip.Browser, error) {
	b := remotezip.NewBuilder(url)
	if opts.Username != "" && opts.Password != "" {
		b = b.WithBasicAuth(opts.Username, opts.Password)
	}
	if opts.Verify {
		b = b.WithChecksumVerification()
	}
	return b.Build(ctx)
}

func main() {
	p := flags.NewParser(&opts, flags.Default)
	_, err := p.Parse()
	if err != nil && !flags.WroteHelp(err) {
		log.Fatal(err)
	}
}
