package main

import (
	"context"
	"log"
	"time"

	browsercore "github.com/kuromi/browser-core"
)

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	b, err := browsercore.ConnectHost(ctx, "localhost:9222")
	if err != nil {
		log.Fatal(err)
	}
	defer b.Close(ctx)

	// first tab
	page1, err := b.NewPage(ctx)
	if err != nil {
		log.Fatal(err)
	}
	defer page1.Close(ctx)

	// second tab, same browser connection
	page2, err := b.NewPage(ctx)
	if err != nil {
		log.Fatal(err)
	}
	defer page2.Close(ctx)

	if err := myTask(ctx, page1); err != nil {
		log.Fatal(err)
	}
	if err := myTask(ctx, page2); err != nil {
		log.Fatal(err)
	}
}

func myTask(ctx context.Context, p *browsercore.Page) error {
	_, err := p.Goto(ctx, "https://example.com", browsercore.WaitLoad, 0)
	return err
}
