package series

// deque is a growable circular buffer of points. Pushes go to the back,
// evictions come off the front; both are O(1) amortized.
type deque struct {
	data  []Point
	head  int
	count int
}

func (d *deque) len() int {
	return d.count
}

func (d *deque) pushBack(p Point) {
	if d.count == len(d.data) {
		d.grow()
	}
	d.data[(d.head+d.count)%len(d.data)] = p
	d.count++
}

func (d *deque) popFront() Point {
	p := d.data[d.head]
	d.data[d.head] = Point{}
	d.head = (d.head + 1) % len(d.data)
	d.count--
	return p
}

func (d *deque) front() Point {
	return d.data[d.head]
}

func (d *deque) back() Point {
	return d.data[(d.head+d.count-1)%len(d.data)]
}

// at returns the i-th point counting from the front.
func (d *deque) at(i int) Point {
	return d.data[(d.head+i)%len(d.data)]
}

func (d *deque) grow() {
	size := len(d.data) * 2
	if size == 0 {
		size = 16
	}
	data := make([]Point, size)
	for i := 0; i < d.count; i++ {
		data[i] = d.at(i)
	}
	d.data = data
	d.head = 0
}
