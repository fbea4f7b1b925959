package schema

import "context"

type FeatureSet map[string]struct{}

type featureSetContextKey struct{}

// ContextWithFeatureSet returns a context carrying the given feature set, so that code running
// deep in resolution (in particular, introspection's field/type/enum-value listings) can gate
// visibility the same way validation does.
func ContextWithFeatureSet(ctx context.Context, features FeatureSet) context.Context {
	return context.WithValue(ctx, featureSetContextKey{}, features)
}

// FeatureSetFromContext returns the feature set attached by ContextWithFeatureSet, or nil (meaning
// "no optional features enabled") if none was attached.
func FeatureSetFromContext(ctx context.Context) FeatureSet {
	features, _ := ctx.Value(featureSetContextKey{}).(FeatureSet)
	return features
}

func NewFeatureSet(features ...string) FeatureSet {
	fs := make(FeatureSet, len(features))
	for _, feature := range features {
		fs[feature] = struct{}{}
	}
	return fs
}

func (s FeatureSet) Has(feature string) bool {
	_, ok := s[feature]
	return ok
}

func (s FeatureSet) IsSubsetOf(other FeatureSet) bool {
	for feature := range s {
		if _, ok := other[feature]; !ok {
			return false
		}
	}
	return true
}
