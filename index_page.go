package main

import (
	"github.com/go-drift/drift/pkg/core"
	"github.com/go-drift/drift/pkg/theme"
	"github.com/go-drift/drift/pkg/widgets"
)

const appTitle = "BestFood"

// indexPage is the main screen, reached once the permission gate passes.
type indexPage struct{}

func (p indexPage) CreateElement() core.Element {
	return core.NewStatelessElement(p, nil)
}

func (p indexPage) Key() any {
	return nil
}

func (p indexPage) Build(ctx core.BuildContext) core.Widget {
	_, colors, textTheme := theme.UseTheme(ctx)
	return widgets.Container{
		Color: colors.Background,
		ChildWidget: widgets.Centered(
			theme.TextOf(ctx, appTitle, textTheme.HeadlineMedium),
		),
	}
}
