// Licensed to the Apache Software Foundation (ASF) under one
// or more contributor license agreements.  See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership.  The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License.  You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

package pbwire

// Config holds the options shared by readers and writers.
type Config struct {
	// AllowZeroPadding treats a zero tag as the end of data, provided every
	// remaining byte of the block is zero.
	AllowZeroPadding bool
	// InternStrings returns a shared string instance for repeated identical
	// values decoded by ReadString.
	InternStrings bool
	// TrackReferences enables WriteReference/ReadReference object identity tracking.
	TrackReferences bool
	// MaxDepth bounds the reader's sub-item nesting; 0 disables the check.
	MaxDepth int
	// RecursionCheckDepth is the writer depth past which open instances are
	// scanned for cycles.
	RecursionCheckDepth int
	// BufferSize is the initial buffer size of the stream backends.
	BufferSize int
}

// defaultConfig returns the default configuration
func defaultConfig() Config {
	return Config{
		MaxDepth:            100,
		RecursionCheckDepth: 25,
		BufferSize:          DefaultBufferSize,
	}
}

// Option is a function that configures a Reader or Writer
type Option func(*Config)

func buildConfig(opts []Option) Config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.BufferSize < minStreamBuffer {
		cfg.BufferSize = minStreamBuffer
	}
	if cfg.RecursionCheckDepth < 0 {
		cfg.RecursionCheckDepth = 0
	}
	return cfg
}

// WithAllowZeroPadding tolerates trailing zero bytes as end of data
func WithAllowZeroPadding(enabled bool) Option {
	return func(c *Config) {
		c.AllowZeroPadding = enabled
	}
}

// WithInternStrings enables string interning on read
func WithInternStrings(enabled bool) Option {
	return func(c *Config) {
		c.InternStrings = enabled
	}
}

// WithTrackReferences enables object identity tracking
func WithTrackReferences(enabled bool) Option {
	return func(c *Config) {
		c.TrackReferences = enabled
	}
}

// WithMaxDepth sets the maximum reader nesting depth
func WithMaxDepth(depth int) Option {
	return func(c *Config) {
		c.MaxDepth = depth
	}
}

// WithRecursionCheckDepth sets the writer depth at which cycle detection starts
func WithRecursionCheckDepth(depth int) Option {
	return func(c *Config) {
		c.RecursionCheckDepth = depth
	}
}

// WithBufferSize sets the initial stream buffer size
func WithBufferSize(size int) Option {
	return func(c *Config) {
		c.BufferSize = size
	}
}
