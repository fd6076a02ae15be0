package middleware

import "context"

type subjectSinkKey struct{}

func withSubjectSink(ctx context.Context, sink *string) context.Context {
	return context.WithValue(ctx, subjectSinkKey{}, sink)
}

func subjectSinkFrom(ctx context.Context) *string {
	sink, _ := ctx.Value(subjectSinkKey{}).(*string)
	return sink
}
