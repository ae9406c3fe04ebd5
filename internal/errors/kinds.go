package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"
)

// Kind is the caller-visible classification of a terminal error. It is what
// the presentation layer switches on to render a retry affordance or a final
// failure state.
type Kind string

const (
	KindProviderUnavailable Kind = "provider_unavailable"
	KindUnsupportedImage    Kind = "unsupported_image"
	KindExtractionFailed    Kind = "extraction_failed"
	KindRateLimited         Kind = "rate_limited"
	KindGenerationFailed    Kind = "generation_failed"
	KindTimeout             Kind = "timeout"
	KindInvalidRequest      Kind = "invalid_request"
)

// Class separates failures worth one more attempt from final ones
type Class string

const (
	ClassTransient Class = "transient"
	ClassPermanent Class = "permanent"
)

// Sentinels for errors.Is matching by kind
var (
	ErrProviderUnavailable = &EnhancedError{Kind: KindProviderUnavailable}
	ErrUnsupportedImage    = &EnhancedError{Kind: KindUnsupportedImage}
	ErrExtractionFailed    = &EnhancedError{Kind: KindExtractionFailed}
	ErrRateLimited         = &EnhancedError{Kind: KindRateLimited}
	ErrGenerationFailed    = &EnhancedError{Kind: KindGenerationFailed}
	ErrTimeout             = &EnhancedError{Kind: KindTimeout}
	ErrInvalidRequest      = &EnhancedError{Kind: KindInvalidRequest}
)

var defaultUserMessages = map[Kind]string{
	KindProviderUnavailable: "The recognition service is temporarily unavailable. Please try again.",
	KindUnsupportedImage:    "This image could not be read. Please upload a clear photo of the menu.",
	KindExtractionFailed:    "We could not read this menu.",
	KindRateLimited:         "Too many images are being generated right now. Please retry shortly.",
	KindGenerationFailed:    "The dish image could not be generated.",
	KindTimeout:             "The request took too long. Please try again.",
	KindInvalidRequest:      "The request is invalid.",
}

// ProviderUnavailable reports a network or credential failure of an external provider.
func ProviderUnavailable(component, provider string, cause error) *EnhancedError {
	return New(fmt.Errorf("provider %s unavailable: %w", provider, cause)).
		Component(component).
		Category(CategoryIntegration).
		Kind(KindProviderUnavailable).
		Class(ClassTransient).
		Context("provider", provider).
		Build()
}

// UnsupportedImage reports empty, corrupt or non-image input.
func UnsupportedImage(reason string) *EnhancedError {
	return Newf("unsupported image: %s", reason).
		Component("ocr").
		Category(CategoryImageInput).
		Kind(KindUnsupportedImage).
		Class(ClassPermanent).
		Context("reason", reason).
		Build()
}

// ExtractionFailed wraps the OCR failure that aborted a menu extraction.
func ExtractionFailed(cause error) *EnhancedError {
	class := ClassPermanent
	if Retryable(cause) {
		class = ClassTransient
	}
	return New(fmt.Errorf("menu extraction failed: %w", cause)).
		Component("pipeline").
		Category(CategoryExtraction).
		Kind(KindExtractionFailed).
		Class(class).
		Build()
}

// RateLimited reports an exhausted generation budget.
func RateLimited(retryAfter time.Duration) *EnhancedError {
	return Newf("generation rate limit exceeded, retry after %s", retryAfter.Round(time.Millisecond)).
		Component("generation").
		Category(CategoryRateLimit).
		Kind(KindRateLimited).
		Class(ClassTransient).
		RetryAfter(retryAfter).
		Build()
}

// GenerationFailed reports a classified failure of the external generation call.
func GenerationFailed(class Class, cause error) *EnhancedError {
	return New(fmt.Errorf("image generation failed (%s): %w", class, cause)).
		Component("generation").
		Category(CategoryGeneration).
		Kind(KindGenerationFailed).
		Class(class).
		Build()
}

// Timeout reports that a caller stopped waiting.
func Timeout(component, operation string, cause error) *EnhancedError {
	return New(fmt.Errorf("%s: %w", operation, cause)).
		Component(component).
		Category(CategoryTimeout).
		Kind(KindTimeout).
		Class(ClassTransient).
		Context("operation", operation).
		Build()
}

// InvalidRequest reports caller input that can never succeed.
func InvalidRequest(component, message string) *EnhancedError {
	return New(stderrors.New(message)).
		Component(component).
		Category(CategoryValidation).
		Kind(KindInvalidRequest).
		Class(ClassPermanent).
		UserMessage(message).
		Build()
}

// KindOf returns the outermost kind found in err's chain, or "".
func KindOf(err error) Kind {
	for err != nil {
		var ee *EnhancedError
		if !stderrors.As(err, &ee) {
			break
		}
		if ee.Kind != "" {
			return ee.Kind
		}
		err = ee.Err
	}
	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(err, context.Canceled) {
		return KindTimeout
	}
	return ""
}

// IsKind reports whether err is classified as kind
func IsKind(err error, kind Kind) bool {
	return stderrors.Is(err, &EnhancedError{Kind: kind})
}

// ClassOf returns the outermost class found in err's chain. Unclassified
// errors are treated as permanent.
func ClassOf(err error) Class {
	if class, ok := LookupClass(err); ok {
		return class
	}
	return ClassPermanent
}

// LookupClass returns the outermost class set on an EnhancedError in err's
// chain and whether one was found.
func LookupClass(err error) (Class, bool) {
	for err != nil {
		var ee *EnhancedError
		if !stderrors.As(err, &ee) {
			break
		}
		if ee.Class != "" {
			return ee.Class, true
		}
		err = ee.Err
	}
	return "", false
}

// RetryAfterOf returns the retry hint carried by err, or zero.
func RetryAfterOf(err error) time.Duration {
	for err != nil {
		var ee *EnhancedError
		if !stderrors.As(err, &ee) {
			return 0
		}
		if ee.RetryAfter > 0 {
			return ee.RetryAfter
		}
		err = ee.Err
	}
	return 0
}

// Retryable reports whether a caller may retry the same request later.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	switch KindOf(err) {
	case KindProviderUnavailable, KindRateLimited, KindTimeout:
		return true
	case KindGenerationFailed, KindExtractionFailed:
		return ClassOf(err) == ClassTransient
	default:
		return false
	}
}

// UserMessage returns the human message for err suitable for display.
func UserMessage(err error) string {
	for e := err; e != nil; {
		var ee *EnhancedError
		if !stderrors.As(e, &ee) {
			break
		}
		if ee.userMsg != "" {
			return ee.userMsg
		}
		if ee.Kind != "" {
			return defaultUserMessages[ee.Kind]
		}
		e = ee.Err
	}
	if k := KindOf(err); k != "" {
		return defaultUserMessages[k]
	}
	return "Something went wrong."
}
