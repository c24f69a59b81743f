package config

import "go.uber.org/fx"

// Module provides *Config. The application supplies EmbeddedConfig and the
// optional named strings envFilePath and externalConfigPath.
var Module = fx.Options(
	fx.Provide(NewConfigProvider),
	fx.Provide(func() EnvironmentExpander {
		return NewOsEnvironmentExpander()
	}),
)
