// Command product-crawler crawls a single shop and stores its products.
package main

import (
	"context"
	"os"

	"github.com/JakeFAU/product-crawler/cmd"
)

func main() {
	if err := cmd.Execute(context.Background()); err != nil {
		os.Exit(1)
	}
}
