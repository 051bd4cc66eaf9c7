package agenda

import (
	"fmt"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Message keys for user-facing strings. The English text doubles as the key.
const (
	MsgTodayHeading    = "Today's schedule"
	MsgTodayEmpty      = "No appointments today"
	MsgUpcomingHeading = "Upcoming"
	MsgUpcomingEmpty   = "Nothing scheduled through next week"
	MsgLoading         = "Loading..."
	MsgFetchFailed     = "Failed to fetch events"
	MsgErrorPrefix     = "Error: %s"
	MsgAllDay          = "All day"
	MsgUpdatedAt       = "Updated %s"
)

// supported lists the display languages; the first is the fallback.
var supported = []language.Tag{language.Japanese, language.English}

var matcher = language.NewMatcher(supported)

var messages = func() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.Japanese))
	set := func(tag language.Tag, pairs ...string) {
		for i := 0; i+1 < len(pairs); i += 2 {
			if err := b.SetString(tag, pairs[i], pairs[i+1]); err != nil {
				panic(err)
			}
		}
	}
	set(language.Japanese,
		MsgTodayHeading, "本日の予定",
		MsgTodayEmpty, "本日の予約はありません",
		MsgUpcomingHeading, "今後の予定",
		MsgUpcomingEmpty, "来週まで予定はありません",
		MsgLoading, "読み込み中...",
		MsgFetchFailed, "予定の取得に失敗しました",
		MsgErrorPrefix, "エラー: %s",
		MsgAllDay, "終日",
		MsgUpdatedAt, "%s 更新",
	)
	set(language.English,
		MsgTodayHeading, MsgTodayHeading,
		MsgTodayEmpty, MsgTodayEmpty,
		MsgUpcomingHeading, MsgUpcomingHeading,
		MsgUpcomingEmpty, MsgUpcomingEmpty,
		MsgLoading, MsgLoading,
		MsgFetchFailed, MsgFetchFailed,
		MsgErrorPrefix, MsgErrorPrefix,
		MsgAllDay, MsgAllDay,
		MsgUpdatedAt, MsgUpdatedAt,
	)
	return b
}()

var jaWeekdays = [...]string{"日曜日", "月曜日", "火曜日", "水曜日", "木曜日", "金曜日", "土曜日"}

// Formatter renders date labels, time ranges and UI strings for one locale
// and timezone. It is a pure value: the same input always yields the same
// output regardless of the process locale or TZ.
type Formatter struct {
	tag     language.Tag
	loc     *time.Location
	printer *message.Printer
}

// NewFormatter matches locale (a BCP 47 tag such as "ja-JP" or "en-US")
// against the supported languages. Unparseable or unsupported tags fall back
// to Japanese; a nil loc means time.Local.
func NewFormatter(locale string, loc *time.Location) Formatter {
	if loc == nil {
		loc = time.Local
	}
	tag := supported[0]
	if requested, err := language.Parse(locale); err == nil {
		_, i, conf := matcher.Match(requested)
		if conf != language.No {
			tag = supported[i]
		}
	}
	return Formatter{
		tag:     tag,
		loc:     loc,
		printer: message.NewPrinter(tag, message.Catalog(messages)),
	}
}

// Tag is the matched display language.
func (f Formatter) Tag() language.Tag {
	return f.tag
}

// Location is the display timezone.
func (f Formatter) Location() *time.Location {
	return f.loc
}

func (f Formatter) japanese() bool {
	return f.tag == language.Japanese
}

// DateLabel formats the calendar day of t with month, day and weekday,
// e.g. "10月23日金曜日" or "Friday, October 23".
func (f Formatter) DateLabel(t time.Time) string {
	t = t.In(f.loc)
	if f.japanese() {
		return fmt.Sprintf("%d月%d日%s", int(t.Month()), t.Day(), jaWeekdays[t.Weekday()])
	}
	return t.Format("Monday, January 2")
}

// Clock formats the time of day of t with a two-digit hour.
func (f Formatter) Clock(t time.Time) string {
	t = t.In(f.loc)
	if f.japanese() {
		return t.Format("15:04")
	}
	return t.Format("03:04 PM")
}

// TimeRange formats start and end, e.g. "10:00〜11:00".
func (f Formatter) TimeRange(start, end time.Time) string {
	if f.japanese() {
		return f.Clock(start) + "〜" + f.Clock(end)
	}
	return f.Clock(start) + " – " + f.Clock(end)
}

// Text returns the localized message for key, formatted with args.
func (f Formatter) Text(key string, args ...any) string {
	return f.printer.Sprintf(key, args...)
}
