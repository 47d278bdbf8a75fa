package main

import (
	"context"
	"log"
	"time"

	browsercore "github.com/kuromi/browser-core"
	"github.com/kuromi/browser-core/launcher"
)

func main() {
	alloc := launcher.NewExecAllocator(launcher.DefaultExecAllocatorOptions[:]...)
	defer alloc.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	b, err := alloc.Allocate(ctx)
	if err != nil {
		log.Fatal(err)
	}
	defer b.Close(ctx)

	if err := myTask(ctx, b); err != nil {
		log.Fatal(err)
	}
}

func myTask(ctx context.Context, b *browsercore.Browser) error {
	page, err := b.NewPage(ctx)
	if err != nil {
		return err
	}
	defer page.Close(ctx)

	_, err = page.Goto(ctx, "https://example.com", browsercore.WaitLoad, 0)
	return err
}
