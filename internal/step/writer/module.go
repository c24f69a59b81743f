package writer

import "go.uber.org/fx"

// Module provides the ArtifactWriter.
var Module = fx.Options(
	fx.Provide(NewArtifactWriter),
)
