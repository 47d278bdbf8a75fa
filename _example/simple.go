package main

import (
	"context"
	"fmt"
	"log"
	"time"

	browsercore "github.com/kuromi/browser-core"
	"github.com/kuromi/browser-core/page"
)

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	b, err := browsercore.ConnectHost(ctx, "localhost:9222")
	if err != nil {
		log.Fatal(err)
	}
	defer b.Close(ctx)

	p, err := b.NewPage(ctx)
	if err != nil {
		log.Fatal(err)
	}
	defer p.Close(ctx)

	title, err := grabTitle(ctx, p)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(title)
}

func grabTitle(ctx context.Context, p *browsercore.Page) (string, error) {
	if _, err := p.Goto(ctx, "https://github.com/", browsercore.WaitLoad, 0); err != nil {
		return "", err
	}
	if _, err := p.WaitForSelector(ctx, "#start-of-content", "visible", 10*time.Second); err != nil {
		return "", err
	}
	var title string
	err := p.Evaluate(ctx, "document.title", page.EvaluateOptions{}, &title)
	return title, err
}
