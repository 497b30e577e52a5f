//go:build !llimpl_nonet

package pipeline

const networkDisabled = false
