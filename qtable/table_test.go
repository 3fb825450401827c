package qtable

import (
	"encoding/json"
	"testing"

	"github.com/brensch/snekrl/game"
	. "github.com/smartystreets/goconvey/convey"
)

const (
	stateA = "1|0|0|0|1|0|0|1|0|1|0"
	stateB = "0|0|1|0|0|1|0|0|1|0|0"
)

func TestTable(t *testing.T) {
	Convey("Given an empty table", t, func() {
		table := New()

		Convey("Get on an unseen state is zero and does not create an entry", func() {
			So(table.Get(stateA), ShouldResemble, Values{})
			So(table.Has(stateA), ShouldBeFalse)
			So(table.Len(), ShouldEqual, 0)
		})

		Convey("Best on an unseen state is straight", func() {
			So(table.Best(stateA), ShouldEqual, game.Straight)
		})

		Convey("Update applies the learning rule", func() {
			got := table.Update(stateA, game.TurnRight, 10, 0.1)
			So(got, ShouldAlmostEqual, 1.0)
			got = table.Update(stateA, game.TurnRight, 10, 0.1)
			So(got, ShouldAlmostEqual, 1.9)
			So(table.Len(), ShouldEqual, 1)
		})
	})

	Convey("Given a table with two states", t, func() {
		table := New()
		table.Set(stateA, Values{1, 3, 2})
		table.Set(stateB, Values{-1, -1, -2})

		Convey("Update touches only the targeted pair", func() {
			table.Update(stateA, game.TurnLeft, 5, 0.5)
			So(table.Get(stateA), ShouldResemble, Values{1, 3, 3.5})
			So(table.Get(stateB), ShouldResemble, Values{-1, -1, -2})
		})

		Convey("Max and Best follow the vector", func() {
			So(table.Max(stateA), ShouldEqual, 3)
			So(table.Best(stateA), ShouldEqual, game.TurnRight)
		})

		Convey("Ties rank by action index", func() {
			So(table.Rank(stateB), ShouldResemble, [game.NumActions]game.Action{game.Straight, game.TurnRight, game.TurnLeft})
			So(RankValues(Values{0, 2, 2}), ShouldResemble, [game.NumActions]game.Action{game.TurnRight, game.TurnLeft, game.Straight})
		})

		Convey("Keys are sorted", func() {
			So(table.Keys(), ShouldResemble, []string{stateB, stateA})
		})

		Convey("Clone is independent", func() {
			c := table.Clone()
			c.Update(stateA, game.Straight, 100, 1)
			So(table.Get(stateA)[game.Straight], ShouldEqual, 1)
			So(c.Equal(table), ShouldBeFalse)
		})

		Convey("Equal treats missing entries as zero", func() {
			other := table.Clone()
			other.Set("0|0|0|0|0|0|0|0|0|0|0", Values{})
			So(table.Equal(other), ShouldBeTrue)
			So(other.Equal(table), ShouldBeTrue)
		})

		Convey("JSON round trip preserves every lookup", func() {
			data, err := json.Marshal(table)
			So(err, ShouldBeNil)
			So(string(data), ShouldEqual, `{"0|0|1|0|0|1|0|0|1|0|0":[-1,-1,-2],"1|0|0|0|1|0|0|1|0|1|0":[1,3,2]}`)

			back := New()
			So(json.Unmarshal(data, back), ShouldBeNil)
			So(back.Equal(table), ShouldBeTrue)
			So(back.Len(), ShouldEqual, 2)
		})
	})

	Convey("Decoding rejects malformed vectors", t, func() {
		table := New()
		So(json.Unmarshal([]byte(`{"k":[1,2]}`), table), ShouldNotBeNil)
		So(json.Unmarshal([]byte(`{"k":"x"}`), table), ShouldNotBeNil)
		So(json.Unmarshal([]byte(`[1,2,3]`), table), ShouldNotBeNil)
		So(json.Unmarshal([]byte(`{"k":[1,null,2]}`), table), ShouldNotBeNil)
		So(json.Unmarshal([]byte(`{"k":null}`), table), ShouldNotBeNil)
		So(json.Unmarshal([]byte(`null`), table), ShouldNotBeNil)
	})

	Convey("Delete forgets a state", t, func() {
		table := New()
		table.Set("k", Values{1, 2, 3})
		table.Delete("k")
		So(table.Has("k"), ShouldBeFalse)
		So(table.Get("k"), ShouldResemble, Values{})
	})
}
